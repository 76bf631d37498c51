package enums

// NotificationType is the kind of an in-app notification; templates pick the icon from it.
type NotificationType string

const (
	NotificationTypeBidPlaced    NotificationType = "bid_placed"
	NotificationTypeOutbid       NotificationType = "outbid"
	NotificationTypeAuctionWon   NotificationType = "auction_won"
	NotificationTypeAuctionEnded NotificationType = "auction_ended"
	NotificationTypeOrderPlaced  NotificationType = "order_placed"
	NotificationTypeReview       NotificationType = "review"
	NotificationTypeSystem       NotificationType = "system"
)

var notificationTypes = values[NotificationType]{
	NotificationTypeBidPlaced,
	NotificationTypeOutbid,
	NotificationTypeAuctionWon,
	NotificationTypeAuctionEnded,
	NotificationTypeOrderPlaced,
	NotificationTypeReview,
	NotificationTypeSystem,
}

func (n NotificationType) IsValid() bool { return notificationTypes.contains(n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse("notification type", value)
}
