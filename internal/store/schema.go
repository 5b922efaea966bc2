package store

import (
	"context"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// textSize marks a column as unbounded text.
const textSize = 2147483647

var (
	// MistakesTable holds every mistake the tutor logged.
	MistakesTable = schema.NewTable("mistakes").
			AddPrimary(&schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}).
			AddColumn(&schema.Column{Name: "timestamp", Type: field.TypeTime}).
			AddColumn(&schema.Column{Name: "native_language", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "target_language", Type: field.TypeString}).
			AddColumn(&schema.Column{Name: "error_sentence", Type: field.TypeString, Size: textSize}).
			AddColumn(&schema.Column{Name: "corrected_sentence", Type: field.TypeString, Size: textSize}).
			AddColumn(&schema.Column{Name: "error_type", Type: field.TypeString}).
			AddIndex("mistake_timestamp", false, []string{"timestamp"})

	// LLMRequestEventsTable is the audit log of model calls.
	LLMRequestEventsTable = schema.NewTable("llm_request_events").
				AddPrimary(&schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}).
				AddColumn(&schema.Column{Name: "timestamp", Type: field.TypeTime}).
				AddColumn(&schema.Column{Name: "provider", Type: field.TypeString}).
				AddColumn(&schema.Column{Name: "model", Type: field.TypeString}).
				AddColumn(&schema.Column{Name: "purpose", Type: field.TypeString}).
				AddColumn(&schema.Column{Name: "input_tokens", Type: field.TypeInt}).
				AddColumn(&schema.Column{Name: "output_tokens", Type: field.TypeInt}).
				AddColumn(&schema.Column{Name: "latency_ms", Type: field.TypeInt64}).
				AddColumn(&schema.Column{Name: "success", Type: field.TypeBool}).
				AddColumn(&schema.Column{Name: "error_message", Type: field.TypeString, Size: textSize, Default: ""}).
				AddColumn(&schema.Column{Name: "request_body", Type: field.TypeString, Size: textSize, Default: ""}).
				AddColumn(&schema.Column{Name: "response_body", Type: field.TypeString, Size: textSize, Default: ""}).
				AddIndex("llmrequestevent_timestamp", false, []string{"timestamp"})

	// Tables lists every table the store manages.
	Tables = []*schema.Table{
		MistakesTable,
		LLMRequestEventsTable,
	}
)

// InitializeSchema creates missing tables and indexes. Existing tables and
// rows are left untouched, so it is safe to call on every start.
func (s *Store) InitializeSchema(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv, schema.WithDropColumn(false), schema.WithDropIndex(false))
	if err != nil {
		return &StorageError{Op: "initialize schema", Err: err}
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return &StorageError{Op: "initialize schema", Err: err}
	}
	return nil
}
