package domain

// TestStatus is the last known health-check outcome for a credential.
type TestStatus string

const (
	TestUnknown TestStatus = "unknown"
	TestOK      TestStatus = "ok"
	TestFail    TestStatus = "fail"
)

// Credential is one configured API key for a vendor.
//
// Credentials live in an ordered list per vendor; the positional index within
// that list is the addressing handle for "use key #N" and defines fallback
// order. The dispatch layer only ever reads a snapshot of these values.
type Credential struct {
	// Secret is the raw API key string.
	Secret string `json:"secret" mapstructure:"secret"`

	// Label is a human-readable identifier for this key.
	Label string `json:"label" mapstructure:"label"`

	// Model overrides the vendor's default model when this key is used.
	Model string `json:"model" mapstructure:"model"`

	// Enabled indicates whether this key participates in dispatch.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Status is the last connection-test outcome, persisted by the
	// configuration collaborator. Informational only.
	Status TestStatus `json:"status" mapstructure:"status"`
}

// Usable reports whether this credential can be used for a live call.
func (c Credential) Usable() bool {
	return c.Enabled && c.Secret != ""
}
