package judges

import "fmt"

// ID short stable key for a judge, e.g. "business", "paul".
type ID string

// Kind selects which upstream backend serves the judge
type Kind string

const (
	KindDify   Kind = "dify"
	KindOpenAI Kind = "openai"
)

// Judge is one downstream analysis backend. Immutable after startup.
type Judge struct {
	ID          ID     `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        Kind   `json:"kind"`
	// Credential is the upstream bearer token. Never serialized.
	Credential string `json:"-"`
	// Model only matters for KindOpenAI.
	Model string `json:"model,omitempty"`
	// Query is the instruction template; empty means the built-in one.
	Query             string `json:"-"`
	RequireRepository bool   `json:"require_repository"`
	RequireDocument   bool   `json:"require_document"`
	// Persist opts the judge into best-effort comment inserts.
	Persist bool `json:"persist"`
}

// String redacts the credential
func (j Judge) String() string {
	return fmt.Sprintf("Judge{id=%s name=%q kind=%s}", j.ID, j.DisplayName, j.Kind)
}

// Valid reports whether k is a known backend kind.
func (k Kind) Valid() bool {
	return k == KindDify || k == KindOpenAI
}
