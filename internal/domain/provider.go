package domain

// TLSMode selects the transport security used when connecting to an SMTP
// provider.
type TLSMode string

const (
	TLSPlain    TLSMode = "plain"
	TLSStartTLS TLSMode = "starttls"
	TLSImplicit TLSMode = "implicit-tls"
)

func (m TLSMode) IsValid() bool {
	switch m {
	case TLSPlain, TLSStartTLS, TLSImplicit:
		return true
	}
	return false
}

// ProviderKind distinguishes the three supported provider flavours.
type ProviderKind string

const (
	ProviderSMTPEmail   ProviderKind = "smtp-email"
	ProviderSMSGateway  ProviderKind = "smtp-sms-gateway"
	ProviderCloudSMSAPI ProviderKind = "cloud-sms-api"
)

func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderSMTPEmail, ProviderSMSGateway, ProviderCloudSMSAPI:
		return true
	}
	return false
}

// ProviderConfig holds the connection and auth parameters for one messaging
// provider. It is immutable once a dispatch run starts.
type ProviderConfig struct {
	Name     string       `json:"name"`
	Kind     ProviderKind `json:"kind"`
	Host     string       `json:"host"`
	Port     int          `json:"port"`
	TLS      TLSMode      `json:"tls"`
	Username string       `json:"username,omitempty"`
	Password string       `json:"-"`
	NoAuth   bool         `json:"no_auth,omitempty"` // e.g. Office 365 Direct Send

	// Sender is the from-address for SMTP kinds, or the originating phone
	// number for the cloud SMS API.
	Sender string `json:"sender"`

	// Cloud SMS API only.
	APIBaseURL string `json:"api_base_url,omitempty"`
	APIKey     string `json:"-"`
}

func (c ProviderConfig) Validate() error {
	if !c.Kind.IsValid() {
		return ErrInvalidKind
	}
	if c.Kind == ProviderCloudSMSAPI {
		if c.APIBaseURL == "" {
			return Errorf(FailConfig, "provider %q: api_base_url is required for cloud-sms-api", c.Name)
		}
		return nil
	}
	if c.Host == "" {
		return Errorf(FailConfig, "provider %q: host is required", c.Name)
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if !c.TLS.IsValid() {
		return ErrInvalidTLSMode
	}
	if !c.NoAuth && (c.Username == "" || c.Password == "") {
		return Errorf(FailConfig, "provider %q: credentials required unless no_auth is set", c.Name)
	}
	return nil
}
