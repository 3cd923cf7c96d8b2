// Package bmlt is a typed client for the BMLT (Basic Meeting List Tool)
// semantic API.
//
// A Client is bound to one root server. It builds request URLs, performs a
// single GET per call and turns the loosely typed response rows into
// Meeting, Format, ServiceBody and ServerInfo values. Address based
// searches go through a GeocodingService backed by Nominatim, which must be
// switched on in Config.
//
//	c, err := bmlt.NewClient(bmlt.Config{RootServerURL: "https://bmlt.example.org"})
//	if err != nil {
//		return err
//	}
//	meetings, err := bmlt.NewMeetingQuery(c).
//		Weekdays(bmlt.Monday).
//		VirtualOnly().
//		Paginate(20, 1).
//		Execute(ctx)
//
// Every failure is an *Error; use errors.Is with the Err* sentinels or
// TypeOf to branch on the kind, and IsRetryable to decide on retries. The
// client itself never retries.
package bmlt
