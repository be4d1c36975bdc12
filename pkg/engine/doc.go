// Package engine provides the mock server: the HTTP handler that splits
// control plane requests from application traffic, and the Server that
// owns its listener, expectation stack and request log.
//
// Control plane:
//
//	POST   /_expectation          register (form fields matcher, response, limiter)
//	DELETE /_all                  clear expectations and the request log
//	GET    /_request/count        number of recorded requests
//	GET    /_request/{pos}        peek at first, last, latest or the n-th request
//	DELETE /_request/{first|last} remove and return a request
//
// Only these method and path pairs are control requests, with {pos} being
// first, last, latest or a decimal index. Every other request, including
// other methods or forms under /_request/, is application traffic. It is
// recorded, then answered by the newest matching expectation or a 404.
package engine
