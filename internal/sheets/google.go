package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// GoogleReader implements Reader over the Google Sheets API
type GoogleReader struct {
	srv *gsheets.Service
}

// NewGoogleReader builds a Sheets client from a client-secrets file and
// a previously obtained token file. Muster runs headless, so there is
// no interactive authorization flow here; obtain the token with any
// standard OAuth helper and point MUSTER_TOKEN_FILE at it.
func NewGoogleReader(ctx context.Context, credentialsFile, tokenFile string) (*GoogleReader, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file %s: %w", credentialsFile, err)
	}

	config, err := google.ConfigFromJSON(b, gsheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret file: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("loading token from %s: %w", tokenFile, err)
	}

	srv, err := gsheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &GoogleReader{srv: srv}, nil
}

// ListProjectTabs returns every tab title except the reserved roster tab
func (r *GoogleReader) ListProjectTabs(ctx context.Context, sheetID string) ([]string, error) {
	resp, err := r.srv.Spreadsheets.Get(sheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing tabs of %s: %w", sheetID, err)
	}

	var tabs []string
	for _, sh := range resp.Sheets {
		if sh.Properties == nil || sh.Properties.Title == RosterTab {
			continue
		}
		tabs = append(tabs, sh.Properties.Title)
	}
	return tabs, nil
}

// ReadRows returns all rows of one tab, header row included
func (r *GoogleReader) ReadRows(ctx context.Context, sheetID, tab string) ([][]string, error) {
	resp, err := r.srv.Spreadsheets.Values.Get(sheetID, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading %s!%s: %w", sheetID, tab, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}
