package curl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/apischema/packages/http"
)

func TestParse_SimpleGet(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl https://api.example.com/users`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Method != "GET" {
		t.Errorf("expected method GET, got %s", parsed.Method)
	}
	if parsed.URL != "https://api.example.com/users" {
		t.Errorf("expected URL https://api.example.com/users, got %s", parsed.URL)
	}
	if parsed.Name != "get_users" {
		t.Errorf("expected name get_users, got %s", parsed.Name)
	}
}

func TestParse_PostWithData(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl https://api.example.com/users -d '{"name":"John"}'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Method != "POST" {
		t.Errorf("expected method POST, got %s", parsed.Method)
	}
	if parsed.Body != `{"name":"John"}` {
		t.Errorf("expected body {\"name\":\"John\"}, got %s", parsed.Body)
	}
}

func TestParse_ExplicitMethodWins(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl -d '{"a":1}' -X put https://api.example.com/users/1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Method != "PUT" {
		t.Errorf("expected method PUT, got %s", parsed.Method)
	}
}

func TestParse_WithHeaders(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl -H "Content-Type: application/json" -H "Authorization: Bearer token123" https://api.example.com/users`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Headers["Content-Type"] != "application/json" {
		t.Errorf("expected Content-Type: application/json, got %s", parsed.Headers["Content-Type"])
	}
	if parsed.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("expected Authorization: Bearer token123, got %s", parsed.Headers["Authorization"])
	}
}

func TestParse_Errors(t *testing.T) {
	converter := NewConverter()

	for _, cmd := range []string{`curl`, `curl -X`, `curl -H "A: b"`} {
		if _, err := converter.Parse(cmd); err == nil {
			t.Errorf("expected error for %q", cmd)
		}
	}
}

func TestToEndpoint_Query(t *testing.T) {
	converter := NewConverter()

	root, ep, err := converter.ConvertCommand(`curl "https://api.example.com/v1/search?q=a%20b&tag=x&tag=y"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if root != "https://api.example.com" {
		t.Errorf("expected root https://api.example.com, got %s", root)
	}
	if ep.Path != "/v1/search" {
		t.Errorf("expected path /v1/search, got %s", ep.Path)
	}
	if ep.Method != http.MethodGet {
		t.Errorf("expected GET, got %s", ep.Method)
	}
	if got := ep.QueryString.Encode(); got != "q=a+b&tag=x&tag=y" {
		t.Errorf("unexpected query %s", got)
	}
}

func TestToEndpoint_JSONBody(t *testing.T) {
	converter := NewConverter()

	_, ep, err := converter.ConvertCommand(`curl -X PATCH https://api.example.com/users/7 -d '{"name":"Ann","age":3}'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Name != "patch_users_7" {
		t.Errorf("expected name patch_users_7, got %s", ep.Name)
	}
	if ep.Body["name"] != "Ann" || ep.Body["age"] != float64(3) {
		t.Errorf("unexpected body %v", ep.Body)
	}

	if _, _, err := converter.ConvertCommand(`curl https://api.example.com/x -d 'a=b'`); err == nil {
		t.Error("expected error for a non-JSON body")
	}
}

func TestToEndpoint_Form(t *testing.T) {
	converter := NewConverter()

	_, ep, err := converter.ConvertCommand(`curl https://api.example.com/upload -F title=Report -F "doc=@./report.pdf;type=application/pdf"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", ep.Method)
	}
	if ep.Body["title"] != "Report" {
		t.Errorf("unexpected body %v", ep.Body)
	}
	if len(ep.Uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(ep.Uploads))
	}
	up := ep.Uploads[0]
	if up.FieldName != "doc" || up.SourcePath != "./report.pdf" || up.ContentType != "application/pdf" {
		t.Errorf("unexpected upload %+v", up)
	}
}

func TestToEndpoint_UnsupportedMethod(t *testing.T) {
	converter := NewConverter()

	if _, _, err := converter.ConvertCommand(`curl -X HEAD https://api.example.com/`); err == nil {
		t.Error("expected error for HEAD")
	}
}

func TestConvertFile(t *testing.T) {
	content := `# users
curl https://api.example.com/users

curl -X POST https://api.example.com/users \
  -d '{"name":"John"}'
curl https://api.example.com/users?page=2
`
	path := filepath.Join(t.TempDir(), "commands.sh")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewConverter().ConvertFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.RootURL != "https://api.example.com" {
		t.Errorf("unexpected root %s", doc.RootURL)
	}
	if len(doc.Endpoints) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(doc.Endpoints))
	}

	want := []string{"get_users", "post_users", "get_users_2"}
	for i, name := range want {
		if doc.Endpoints[i].Name != name {
			t.Errorf("endpoint %d: expected %s, got %s", i, name, doc.Endpoints[i].Name)
		}
	}
}

func TestTokenize(t *testing.T) {
	tokens := tokenize(`-H "A: b c" -d '{"x": "y"}' https://e.com`)
	want := []string{"-H", "A: b c", "-d", `{"x": "y"}`, "https://e.com"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}
