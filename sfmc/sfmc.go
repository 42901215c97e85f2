// Package sfmc is the catalogue of Salesforce Marketing Cloud auth API tools.
//
// Every tool is pure data: an HTTPEndpoint whose templates reference either
// invocation arguments or values from Config. Nothing here performs I/O on
// its own; tool.HTTPAdapter does the single round trip.
package sfmc

import (
	"net/http"
	"strings"

	"github.com/petal-labs/sfmctools/tool"
)

// DefaultAuthBaseURL is the tenant-specific authentication base URI.
const DefaultAuthBaseURL = "https://{et_subdomain}.auth.marketingcloudapis.com"

// Template value keys shared by the catalogue.
const (
	ValueSubdomain   = "et_subdomain"
	ValueClientID    = "et_clientId"
	ValueAccessToken = "dne_etAccessToken"
)

// Tool names.
const (
	ToolRequestToken = "request_sfmc_token"
	ToolGetBaseURLs  = "get_base_urls"
	ToolGetUserInfo  = "get_user_info"
)

// Config carries the pre-configured values the tools need. It is injected
// when the catalogue is built and never mutated by invocations.
type Config struct {
	Subdomain   string
	ClientID    string
	AccessToken string
	// AuthBaseURL may contain {et_subdomain}; empty means DefaultAuthBaseURL.
	AuthBaseURL string
	TimeoutMS   int
}

// Values exposes the config as template values.
func (c Config) Values() tool.Values {
	return tool.Values{
		ValueSubdomain:   strings.TrimSpace(c.Subdomain),
		ValueClientID:    strings.TrimSpace(c.ClientID),
		ValueAccessToken: strings.TrimSpace(c.AccessToken),
	}
}

func (c Config) authBase() string {
	base := strings.TrimSpace(c.AuthBaseURL)
	if base == "" {
		base = DefaultAuthBaseURL
	}
	return strings.TrimRight(base, "/")
}

// Endpoints returns the endpoint descriptions in catalogue order.
func Endpoints(cfg Config) []tool.HTTPEndpoint {
	base := cfg.authBase()
	bearer := []tool.Binding{{Key: "Authorization", Value: "Bearer {" + ValueAccessToken + "}"}}

	return []tool.HTTPEndpoint{
		{
			Schema: tool.Schema{
				Name:        ToolRequestToken,
				Description: "Request an access token from Salesforce Marketing Cloud.",
				Parameters: []tool.Parameter{
					{Name: "et_subdomain", Type: tool.TypeString, Required: true, Description: "Tenant specific subdomain for the Authentication Base URI."},
					{Name: "et_clientId", Type: tool.TypeString, Required: true, Description: "Client Id for authentication."},
					{Name: "et_clientSecret", Type: tool.TypeString, Required: true, Sensitive: true, Description: "Client Secret for authentication."},
					{Name: "et_mid", Type: tool.TypeString, Required: true, Description: "MID of the business unit."},
				},
			},
			Method: http.MethodPost,
			URL:    base + "/v2/token",
			Body: []tool.Binding{
				{Key: "grant_type", Value: "client_credentials"},
				{Key: "client_id", Value: "{et_clientId}"},
				{Key: "client_secret", Value: "{et_clientSecret}"},
				{Key: "account_id", Value: "{et_mid}"},
			},
			TimeoutMS:      cfg.TimeoutMS,
			FailureMessage: "An error occurred while requesting the access token.",
		},
		{
			Schema: tool.Schema{
				Name:        ToolGetBaseURLs,
				Description: "Get base URLs for the Salesforce Marketing Cloud.",
				Parameters: []tool.Parameter{
					{Name: "userId", Type: tool.TypeString, Required: true, Description: "The user ID for the resource."},
				},
			},
			Method: http.MethodGet,
			URL:    base + "/v2/discovery",
			Query: []tool.Binding{
				{Key: "client_id", Value: "{" + ValueClientID + "}"},
				{Key: "resource", Value: "acct:{userId}"},
			},
			Headers:        bearer,
			TimeoutMS:      cfg.TimeoutMS,
			FailureMessage: "An error occurred while getting base URLs.",
		},
		{
			Schema: tool.Schema{
				Name:        ToolGetUserInfo,
				Description: "Get user information from Salesforce Marketing Cloud.",
				Parameters:  []tool.Parameter{},
			},
			Method:         http.MethodGet,
			URL:            base + "/v2/userinfo",
			Headers:        bearer,
			TimeoutMS:      cfg.TimeoutMS,
			FailureMessage: "An error occurred while getting user info.",
		},
	}
}

// Adapters builds one HTTP adapter per catalogue endpoint.
func Adapters(cfg Config, opts ...tool.HTTPOption) []tool.Adapter {
	values := cfg.Values()
	endpoints := Endpoints(cfg)
	adapters := make([]tool.Adapter, 0, len(endpoints))
	for _, endpoint := range endpoints {
		adapters = append(adapters, tool.NewHTTPAdapter(endpoint, values, opts...))
	}
	return adapters
}

// Register adds the whole catalogue to reg.
func Register(reg *tool.Registry, cfg Config, opts ...tool.HTTPOption) error {
	for _, adapter := range Adapters(cfg, opts...) {
		if err := reg.Register(adapter); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding only the SFMC catalogue.
func NewRegistry(cfg Config, opts ...tool.HTTPOption) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	if err := Register(reg, cfg, opts...); err != nil {
		return nil, err
	}
	return reg, nil
}
