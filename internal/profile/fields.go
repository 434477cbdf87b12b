package profile

// AgentFields lists the field names addressable under
// managed://agent/<id>/<field>, in the order they are listed.
var AgentFields = []string{
	"agents_md",
	"soul_md",
	"identity_md",
	"guidelines_md",
	"code_of_conduct_md",
	"long_term_memory_md",
}

// UserFields lists the field names addressable under
// managed://user/<id>/<field>, in the order they are listed.
var UserFields = []string{
	"user_md",
	"preferences_json",
	"long_term_memory_md",
	"name",
	"nickname",
}

func IsAgentField(field string) bool { return contains(AgentFields, field) }
func IsUserField(field string) bool  { return contains(UserFields, field) }

func contains(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

// ReadAgentField returns the current value of field, or ok=false if field
// is not a recognized agent field.
func ReadAgentField(p AgentProfile, field string) (string, bool) {
	switch field {
	case "agents_md":
		return p.AgentsMd, true
	case "soul_md":
		return p.SoulMd, true
	case "identity_md":
		return p.IdentityMd, true
	case "guidelines_md":
		return p.GuidelinesMd, true
	case "code_of_conduct_md":
		return p.CodeOfConductMd, true
	case "long_term_memory_md":
		return p.LongTermMemMd, true
	default:
		return "", false
	}
}

// WriteAgentField sets field on p, returning ok=false if field is not a
// recognized agent field.
func WriteAgentField(p *AgentProfile, field, content string) bool {
	switch field {
	case "agents_md":
		p.AgentsMd = content
	case "soul_md":
		p.SoulMd = content
	case "identity_md":
		p.IdentityMd = content
	case "guidelines_md":
		p.GuidelinesMd = content
	case "code_of_conduct_md":
		p.CodeOfConductMd = content
	case "long_term_memory_md":
		p.LongTermMemMd = content
	default:
		return false
	}
	return true
}

// ReadUserField returns the current value of field, or ok=false if field is
// not a recognized user field.
func ReadUserField(p UserProfile, field string) (string, bool) {
	switch field {
	case "user_md":
		return p.UserMd, true
	case "preferences_json":
		return p.PreferencesJS, true
	case "long_term_memory_md":
		return p.LongTermMemMd, true
	case "name":
		return p.Name, true
	case "nickname":
		return p.Nickname, true
	default:
		return "", false
	}
}

// WriteUserField sets field on p, returning ok=false if field is not a
// recognized user field.
func WriteUserField(p *UserProfile, field, content string) bool {
	switch field {
	case "user_md":
		p.UserMd = content
	case "preferences_json":
		p.PreferencesJS = content
	case "long_term_memory_md":
		p.LongTermMemMd = content
	case "name":
		p.Name = content
	case "nickname":
		p.Nickname = content
	default:
		return false
	}
	return true
}
