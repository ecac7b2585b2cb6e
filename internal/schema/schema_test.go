package schema

import (
	"strings"
	"testing"
)

func TestAll(t *testing.T) {
	schemas, err := All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %d", len(schemas))
	}
	if schemas[0].Name != "Status" {
		t.Errorf("expected Status first, got %s", schemas[0].Name)
	}
	for _, s := range schemas {
		if s.Source == "" {
			t.Errorf("%s schema source is empty", s.Name)
		}
	}
}

func TestGet(t *testing.T) {
	t.Run("existing schema", func(t *testing.T) {
		s, err := Get("Story")
		if err != nil {
			t.Fatalf("Get(Story) error = %v", err)
		}
		if !strings.Contains(s.Source, "page_index") {
			t.Error("Story schema doesn't mention page_index")
		}
	})

	t.Run("non-existent schema", func(t *testing.T) {
		if _, err := Get("NonExistent"); err == nil {
			t.Error("expected error for non-existent schema")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		payload string
		wantErr bool
	}{
		{
			name:    "status with legacy scalar audio",
			schema:  "Status",
			payload: `{"success":true,"status":{"character_sheet":"completed","pages":{"1":{"image":null,"audio":"completed"}}}}`,
		},
		{
			name:    "status with audio map",
			schema:  "Status",
			payload: `{"success":true,"status":{"pages":{"2":{"audio":{"cn":"completed","en":null}}}}}`,
		},
		{
			name:    "status missing status object",
			schema:  "Status",
			payload: `{"success":true}`,
			wantErr: true,
		},
		{
			name:    "status with non-numeric page key",
			schema:  "Status",
			payload: `{"status":{"pages":{"abc":{}}}}`,
			wantErr: true,
		},
		{
			name:    "story with pages",
			schema:  "Story",
			payload: `{"success":true,"data":{"title":"t","script":[{"page_index":1,"image_prompt":"a cat"}]}}`,
		},
		{
			name:    "story page index must be integer",
			schema:  "Story",
			payload: `{"data":{"script":[{"page_index":"one"}]}}`,
			wantErr: true,
		},
		{
			name:    "config concurrency",
			schema:  "Config",
			payload: `{"success":true,"config":{"generation":{"concurrency":{"image":2,"video":1}}}}`,
		},
		{
			name:    "not json",
			schema:  "Config",
			payload: `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.schema, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
