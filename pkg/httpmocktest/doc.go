// Package httpmocktest runs an httpmock server inside Go tests.
//
// # Basic Usage
//
//	func TestMyAPI(t *testing.T) {
//	    mock := httpmocktest.New(t)
//
//	    mock.Mock("GET", "/users/{id}").
//	        WithStatus(200).
//	        WithJSON(map[string]string{"id": "123", "name": "Test User"}).
//	        Reply()
//
//	    url := mock.Start()
//
//	    resp, err := http.Get(url + "/users/123")
//	    ...
//	    mock.AssertCalled(t, "GET", "/users/{id}")
//	}
//
// Expectations registered later take precedence. Once(), Times(n) limit how
// often an expectation answers; afterwards requests fall through to older
// expectations or the server's 404.
//
// # Inspecting Requests
//
//	req := mock.LastRequest()
//	req.AssertMethod(t, "POST")
//	req.AssertHeader(t, "Content-Type", "application/json")
//	req.AssertJSONField(t, "$.user.name", "Ada")
//
// The server is stopped when the test completes.
package httpmocktest
