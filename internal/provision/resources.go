// Package provision creates and removes the IAM resources that let an EC2
// instance snapshot its own volumes. Both directions run a fixed, ordered
// list of steps and never stop early: a failed step is recorded in the
// Report and the next step runs anyway. Nothing is rolled back.
package provision

import (
	"errors"

	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// Fixed resource names and document paths. Documents are resolved against
// the working directory.
const (
	RoleName            = "EC2SnapshotRole"
	PolicyName          = "EC2SnapshotPolicy"
	InstanceProfileName = "EC2SnapshotProfile"

	TrustPolicyFile    = "trust_policy.json"
	PolicyDocumentFile = "iam_policy.json"
)

// Step names, in the order they appear in a Report.
const (
	StepCreateRole               = "create-role"
	StepCreatePolicy             = "create-policy"
	StepGetCallerIdentity        = "get-caller-identity"
	StepAttachRolePolicy         = "attach-role-policy"
	StepCreateInstanceProfile    = "create-instance-profile"
	StepAddRoleToInstanceProfile = "add-role-to-instance-profile"

	StepRemoveRoleFromInstanceProfile = "remove-role-from-instance-profile"
	StepDeleteInstanceProfile         = "delete-instance-profile"
	StepDetachRolePolicy              = "detach-role-policy"
	StepDeletePolicyVersions          = "delete-policy-versions"
	StepDeletePolicy                  = "delete-policy"
	StepDeleteRole                    = "delete-role"
)

// StepResult is the outcome of one step. Output holds the API response
// payload keyed the way the AWS CLI prints it, or nil for calls that
// return nothing.
type StepResult struct {
	Step   string                 `json:"step"`
	Output map[string]interface{} `json:"output,omitempty"`
	Err    error                  `json:"-"`
	Error  string                 `json:"error,omitempty"`
}

// OK reports whether the step succeeded.
func (s StepResult) OK() bool { return s.Err == nil }

// Report collects every step outcome of a setup or teardown run.
type Report struct {
	AccountID string       `json:"account_id"`
	PolicyARN string       `json:"policy_arn"`
	Steps     []StepResult `json:"steps"`
}

// Failed returns the steps that returned an error, in run order.
func (r *Report) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// AlreadyExists returns the names of steps that failed because the resource
// was already present, the expected outcome of a second setup run.
func (r *Report) AlreadyExists() []string {
	var names []string
	for _, s := range r.Steps {
		var exists *iamtypes.EntityAlreadyExistsException
		if errors.As(s.Err, &exists) {
			names = append(names, s.Step)
		}
	}
	return names
}

// Step returns the result recorded for name, if any.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// record appends a result and forwards it to the observer, if set.
func (r *Report) record(observe func(StepResult), step string, output map[string]interface{}, err error) {
	res := StepResult{Step: step, Output: output, Err: err}
	if err != nil {
		res.Error = err.Error()
		res.Output = nil
	}
	r.Steps = append(r.Steps, res)
	if observe != nil {
		observe(res)
	}
}
