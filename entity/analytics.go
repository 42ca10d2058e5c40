package entity

// DailyCount is one (day, bucket) aggregation row.
type DailyCount struct {
	Day     string `json:"day" bson:"day"`
	Channel string `json:"channel" bson:"channel"`
	Count   int    `json:"count" bson:"count"`
}

// AnalyticsSummary aggregates per-day activity for the staff dashboard.
type AnalyticsSummary struct {
	Sessions []DailyCount `json:"sessions"`
	Messages []DailyCount `json:"messages"`
	Leads    []DailyCount `json:"leads"`
}
