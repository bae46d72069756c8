package fingerprint

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"os"
	"testing"

	"audiofp/internal/models"
)

// fakeRunner simulates fpcalc without spawning a process.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	if f.run == nil {
		return CommandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// buildForm encodes one file under field and parses it back the way the HTTP layer does.
func buildForm(t *testing.T, field, filename, contentType string, content []byte) *multipart.Form {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form
}

func uploadedFile(t *testing.T, filename string, content []byte) *models.UploadedFile {
	t.Helper()
	file, err := ValidateUpload(buildForm(t, FormField, filename, "audio/mpeg", content))
	if err != nil {
		t.Fatalf("validate upload: %v", err)
	}
	return file
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
