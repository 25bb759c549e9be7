package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
)

// ---------- SweepExpiredCopiesWorkflow ----------

type SweepExpiredCopiesWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *SweepExpiredCopiesWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *SweepExpiredCopiesWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *SweepExpiredCopiesWorkflowTestSuite) TestSuccess() {
	s.env.OnActivity("SweepExpiredCopies", mock.Anything).Return(2, nil)
	s.env.OnActivity("CountActiveCopies", mock.Anything).Return(int64(5), nil)

	s.env.ExecuteWorkflow(SweepExpiredCopiesWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *SweepExpiredCopiesWorkflowTestSuite) TestNothingExpired() {
	s.env.OnActivity("SweepExpiredCopies", mock.Anything).Return(0, nil)
	s.env.OnActivity("CountActiveCopies", mock.Anything).Return(int64(0), nil)

	s.env.ExecuteWorkflow(SweepExpiredCopiesWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *SweepExpiredCopiesWorkflowTestSuite) TestSweepFails() {
	s.env.OnActivity("SweepExpiredCopies", mock.Anything).Return(0, fmt.Errorf("core db unavailable"))

	s.env.ExecuteWorkflow(SweepExpiredCopiesWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

// ---------- CleanupQueryAuditLogsWorkflow ----------

type CleanupQueryAuditLogsWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *CleanupQueryAuditLogsWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *CleanupQueryAuditLogsWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *CleanupQueryAuditLogsWorkflowTestSuite) TestSuccess() {
	s.env.OnActivity("DeleteOldQueryAuditLogs", mock.Anything, 90).Return(int64(42), nil)

	s.env.ExecuteWorkflow(CleanupQueryAuditLogsWorkflow, 90)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *CleanupQueryAuditLogsWorkflowTestSuite) TestDeleteFails() {
	s.env.OnActivity("DeleteOldQueryAuditLogs", mock.Anything, 90).Return(int64(0), fmt.Errorf("db error"))

	s.env.ExecuteWorkflow(CleanupQueryAuditLogsWorkflow, 90)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

// ---------- Run all suites ----------

func TestSweepExpiredCopiesWorkflow(t *testing.T) {
	suite.Run(t, new(SweepExpiredCopiesWorkflowTestSuite))
}

func TestCleanupQueryAuditLogsWorkflow(t *testing.T) {
	suite.Run(t, new(CleanupQueryAuditLogsWorkflowTestSuite))
}
