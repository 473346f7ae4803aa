package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRevision = "main"
	DefaultOrgName  = "default"
)

// Model is a registered ML artifact. Models are created by the upload flow and
// are read-only from the point of view of the deployment lifecycle.
type Model struct {
	ID         uuid.UUID `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Name       string    `json:"name"`
	ModelType  string    `json:"model_type"`
	SourceURL  string    `json:"source_url"`
	Revision   string    `json:"revision"`
	Parameters int64     `json:"parameters"`

	// Script is the optional custom execution script associated with the model.
	Script *ModelScript `json:"script,omitempty"`
}

// ModelScript is an opaque execution script blob.
type ModelScript struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

// ScriptContent returns the custom script content, or nil if the model has none.
func (m *Model) ScriptContent() *string {
	if m.Script == nil {
		return nil
	}
	content := m.Script.Content
	return &content
}

// Source splits the source URL into organization and model name.
//
// For "https://huggingface.co/org/name" the organization is the 3rd path
// component and the name the 4th, counting the scheme and the empty segment
// after it. Missing components fall back to DefaultOrgName and the model's
// registered name.
func (m *Model) Source() (org, name string) {
	org, name = DefaultOrgName, m.Name

	parts := strings.Split(m.SourceURL, "/")
	if len(parts) > 3 && parts[3] != "" {
		org = parts[3]
	}
	if len(parts) > 4 && parts[4] != "" {
		name = parts[4]
	}
	return org, name
}

// RevisionOrDefault returns the pinned revision or DefaultRevision.
func (m *Model) RevisionOrDefault() string {
	if m.Revision == "" {
		return DefaultRevision
	}
	return m.Revision
}
