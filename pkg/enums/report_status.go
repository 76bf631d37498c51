package enums

// ReportStatus is where a product report sits in the admin queue.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusReviewed  ReportStatus = "reviewed"
	ReportStatusDismissed ReportStatus = "dismissed"
)

var reportStatuses = values[ReportStatus]{ReportStatusPending, ReportStatusReviewed, ReportStatusDismissed}

func (s ReportStatus) String() string { return string(s) }

// IsValid is exact; use ParseReportStatus for form input.
func (s ReportStatus) IsValid() bool { return reportStatuses.contains(s) }

func ParseReportStatus(value string) (ReportStatus, error) {
	return reportStatuses.parse("report status", value)
}
