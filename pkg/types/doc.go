// Package types defines the Tea entity and its enumerations, the Store
// interface implemented by storage backends, user preferences, validation of
// untrusted records, and the standard errors shared across teashelf.
package types
