package domain

// BindingStatus describes whether a LINE follower has linked a member account.
type BindingStatus string

const (
	BindingBound   BindingStatus = "bound"
	BindingUnbound BindingStatus = "unbound"
)

// RecipientRef is a provider-addressable recipient resolved for one execution.
// It is read-only and sourced from the subscriber store.
type RecipientRef struct {
	SubscriberID string `json:"subscriber_id" db:"id"`
	UserID       string `json:"user_id" db:"line_user_id"`
	DisplayName  string `json:"display_name" db:"display_name"`
	PictureURL   string `json:"picture_url,omitempty" db:"picture_url"`
}
