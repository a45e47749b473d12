package explorer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ExplorerTestSuite struct {
	suite.Suite
	Ctx context.Context
}

func (s *ExplorerTestSuite) SetupTest() {
	s.Ctx = context.Background()
}

func TestExplorer(t *testing.T) {
	suite.Run(t, new(ExplorerTestSuite))
}
