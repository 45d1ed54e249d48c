package testing

// WithFiles pre-populates the host filesystem with files.
// Keys are paths, values are file contents.
func WithFiles(host *MockHost, files map[string]string) {
	for path, content := range files {
		_ = host.FS().WriteFile(path, []byte(content))
	}
}

// WithDirs pre-populates the host filesystem with directories.
func WithDirs(host *MockHost, dirs []string) {
	for _, dir := range dirs {
		_ = host.FS().MkdirAll(dir)
	}
}
