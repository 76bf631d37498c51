package enums

// AuctionStatus is derived from auction_end at read time; it is never stored.
type AuctionStatus string

const (
	AuctionStatusOpen  AuctionStatus = "OPEN"
	AuctionStatusEnded AuctionStatus = "ENDED"
)

func (s AuctionStatus) String() string {
	return string(s)
}
