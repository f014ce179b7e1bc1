package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
)

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewMissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoadCredentials(t *testing.T) {
	b, err := loadCredentials(Config{CredentialsJSON: `{"type":"service_account"}`})
	require.NoError(t, err)
	assert.Contains(t, string(b), "service_account")

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))
	b, err = loadCredentials(Config{CredentialsFile: path})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(b))

	_, err = loadCredentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "nope.json")})
	assert.ErrorContains(t, err, "read service account file")
}

func TestReadGrid(t *testing.T) {
	var gotPath, gotRender string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRender = r.URL.Query().Get("valueRenderOption")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"range":          "예산!A1:T3",
			"majorDimension": "ROWS",
			"values": [][]any{
				{"비목", "세목", "항목", "예산"},
				{"인건비", "", "연구원 인건비", "1,000,000", "", "", "", "", "22%"},
			},
		})
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1", Range: "예산"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	grid, err := c.ReadGrid(context.Background())
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Len(t, grid[0], 9)
	assert.Equal(t, "1,000,000", grid[1][3])
	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/"), gotPath)
	assert.Equal(t, "FORMATTED_VALUE", gotRender)
}

func TestReadGridError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1", Range: "A1:B2"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.ReadGrid(context.Background())
	assert.ErrorContains(t, err, "read A1:B2")
}
