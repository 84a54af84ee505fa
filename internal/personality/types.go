package personality

import "time"

// Config is a company's chatbot personality.
type Config struct {
	CompanyID        string    `json:"company_id"`
	BotName          string    `json:"bot_name"`
	BotPrompt        string    `json:"bot_prompt"`
	LengthOfResponse string    `json:"length_of_response"`
	Tone             string    `json:"tone"`
	PreferredLang    string    `json:"preferred_lang"`
	UseEmojis        bool      `json:"use_emojis"`
	UseBulletPoints  bool      `json:"use_bullet_points"`
	Capabilities     []string  `json:"capabilities"`
	UpdatedAt        time.Time `json:"updated_at"`
}
