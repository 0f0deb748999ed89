package supervisor_test

import (
	"os"
	"testing"

	"pdcdesk/internal/testsupport"
)

func TestMain(m *testing.M) {
	testsupport.RunHelperIfRequested()
	os.Exit(m.Run())
}
