package models

// NotificationTypeWallet tags notifications produced by wallet top-ups.
const NotificationTypeWallet = "wallet"

// Notification is an audit/inbox record for an account. Timestamp is ISO-8601 (UTC)
// so lexicographic order matches chronological order.
type Notification struct {
	ID        string `json:"notificationId"`
	TargetID  string `json:"targetId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	IsRead    bool   `json:"isRead"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}
