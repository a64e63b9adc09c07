// Package cli provides the interactive fieldvisit terminal client.
//
// NewApp wires configuration, the encrypted credential store, app storage,
// the token refresh coordinator and the API services. App.Run restores a
// previous session (or prompts for a login) and then runs a REPL:
//
//	Session:  login, select <id>, switch <id>, linked, whoami, token, logout
//	Visits:   visits [dd-mm-yyyy], locations, providers <location>,
//	          start <providerId>, stop [location], duty on|off [location]
//	Profile:  image
//
// The prompt shows the current identity and duty mode, e.g.
// "fv (Asha Rao on-duty)> ".
package cli
