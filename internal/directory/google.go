package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloud-shuttle/muster/pkg/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleDirectory lists Workspace users via the Admin SDK Directory
// API. The messaging-channel address and handle are read from the
// user's custom schema, which the verification flow writes when a
// person links their chat account.
type GoogleDirectory struct {
	srv      *admin.Service
	domain   string
	schema   string
	maxPages int
}

const (
	channelSchemaKey = "muster"
	channelField     = "channel"
	handleField      = "handle"
)

// NewGoogleDirectory builds a Directory over the Admin SDK
func NewGoogleDirectory(ctx context.Context, credentialsFile, tokenFile, domain string) (*GoogleDirectory, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file %s: %w", credentialsFile, err)
	}

	config, err := google.ConfigFromJSON(b, admin.AdminDirectoryUserReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret file: %w", err)
	}

	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("loading token from %s: %w", tokenFile, err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}

	srv, err := admin.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating directory service: %w", err)
	}

	return &GoogleDirectory{
		srv:      srv,
		domain:   domain,
		schema:   channelSchemaKey,
		maxPages: 20,
	}, nil
}

// ListAll fetches every user in the domain
func (d *GoogleDirectory) ListAll(ctx context.Context) ([]types.Contact, error) {
	var contacts []types.Contact
	pageToken := ""

	for page := 0; page < d.maxPages; page++ {
		call := d.srv.Users.List().
			Domain(d.domain).
			Projection("full").
			MaxResults(500).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing users: %w", err)
		}

		for _, u := range resp.Users {
			contact := types.Contact{ID: u.PrimaryEmail}
			if u.Name != nil {
				contact.Name = u.Name.FullName
			}
			contact.Channel, contact.Handle = channelFromSchema(u.CustomSchemas, d.schema)
			contacts = append(contacts, contact)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return contacts, nil
}

func channelFromSchema(schemas map[string]googleapi.RawMessage, key string) (channel, handle string) {
	raw, ok := schemas[key]
	if !ok {
		return "", ""
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", ""
	}
	return fields[channelField], fields[handleField]
}
