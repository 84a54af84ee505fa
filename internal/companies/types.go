package companies

import "time"

// Platform identifies the channel an integration speaks.
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformWACA     Platform = "waca"
)

// Company is a tenant.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Integration connects a company to a messaging channel. For the WhatsApp
// bot service InstanceName identifies the paired device; for the WhatsApp
// Business API PhoneNumberID and AccessToken address the Graph API.
type Integration struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	Platform      Platform  `json:"platform"`
	InstanceName  string    `json:"instance_name"`
	PhoneNumber   string    `json:"phone_number"`
	PhoneNumberID string    `json:"phone_number_id"`
	AccessToken   string    `json:"access_token,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}
