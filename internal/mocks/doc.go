// Package mocks provides shared mock implementations for testing.
//
// Mocks come in two flavours, matching how tests use them:
//
//   - Fn-field mocks (MockUserService, MockReportSubmitter, ...) whose
//     behaviour is set by assigning functions, with sensible defaults.
//   - testify/mock mocks (TestifyMockUserStore) for tests that assert on
//     exact call arguments.
//
// Usage:
//
//	import "github.com/phrazzld/webapp-api/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    publisher := &mocks.MockEventPublisher{}
//	    publisher.PublishFn = func(ctx context.Context, eventType string, data json.RawMessage, backend events.Backend) (*events.Event, error) {
//	        return nil, events.ErrTransport
//	    }
//	}
package mocks
