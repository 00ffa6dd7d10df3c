package domain

// TokenPair is the access/refresh credential pair issued by the remote API.
// The JSON shape matches both the durable storage layout and the refresh endpoint response.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (p TokenPair) IsZero() bool {
	return p.Access == "" && p.Refresh == ""
}

func (p TokenPair) HasAccess() bool {
	return p.Access != ""
}

func (p TokenPair) HasRefresh() bool {
	return p.Refresh != ""
}
