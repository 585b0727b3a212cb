// Package remote talks to the planner's /do endpoints. A Session carries one
// authenticated cookie jar; a Client issues the record-level calls on top of
// it. Non-200 replies and transport failures surface as *FetchError, which
// matches services.ErrTransport.
package remote
