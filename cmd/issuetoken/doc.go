// Command issuetoken manages the API tokens that authenticate upload clients.
//
// Usage:
//
//	issuetoken <command> [arguments]
//
// Commands:
//
//	create <user-id> [label]  Issue a token for an owner and print the bearer
//	                          value. The secret is shown once and cannot be
//	                          recovered later.
//
//	list <user-id>            List the active tokens of an owner.
//
//	revoke <token-id>         Disable a token. Asks for confirmation when run
//	                          from a terminal.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
//
// When standard output is not a terminal, create prints only the bearer value
// so it can be captured by scripts:
//
//	TOKEN=$(issuetoken create 42 ci-uploader)
package main
