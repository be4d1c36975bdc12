// Package wire defines the serialization used between the mock server and
// its clients.
//
// Registration: a form-encoded POST with a JSON array of predicates under
// "matcher", a JSON response under "response" and an optional JSON limiter
// under "limiter". DecodeRegistration reports failures as a
// RegistrationError whose Reason carries the fixed message the server returns.
//
// Recorded-request transfer: a JSON document served as text/plain holding
// the raw HTTP/1.x message (base64, so any body bytes survive), server
// metadata and decoded form fields.
// RecordedRequest.HTTPRequest turns it back into an *http.Request.
package wire
