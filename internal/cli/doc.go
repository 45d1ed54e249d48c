// Package cli implements the myssh command line.
//
// Every command that touches a server opens an in-process engine, connects
// the target (a saved server's name or id, or [user@]host[:port]) and calls
// the same typed command the HTTP API dispatches to:
//
//	exec       execute_ssh_command
//	ls         list_remote_directory
//	upload     upload_file
//	download   download_file
//	mkdir      create_directory
//	rm         delete_files
//	mv         rename_file
//	chmod      change_file_mode
//	monitor    get_system_monitor
//	status     connect + list_sessions
//	server     get_servers, save_server, get_server, update_server, delete_server
//
// serve runs the engine long-lived behind the chi router in package api.
//
// # Output
//
// Text output is rendered by package ui. With --output json or yaml the
// command prints the engine's response envelope unchanged, so scripts see the
// same shape as HTTP clients. Errors become a failed envelope on stdout.
//
// # Exit codes
//
// exec exits with the remote command's status. rm, chmod and status exit 1
// when any path or target failed. Other failures exit 1.
package cli
