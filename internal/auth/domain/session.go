package domain

// SchoolRef is the tenant summary embedded in a session.
type SchoolRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

// Session is the claim set handed to the host session layer. It is built
// once per successful login or explicit refresh and passed by value.
type Session struct {
	AccountID          string     `json:"accountId"`
	Role               Role       `json:"role"`
	SchoolID           *string    `json:"schoolId"`
	School             *SchoolRef `json:"school"`
	MustChangePassword bool       `json:"mustChangePassword"`
}
