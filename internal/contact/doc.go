// Package contact serves the portfolio contact form.
//
// A submission is decoded and validated, checked against the submission
// limiter, sent as an email through Resend and, when an archive is
// configured, written to S3 as JSON. The limiter only records submissions
// whose email was actually accepted by the provider.
package contact
