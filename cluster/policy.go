package cluster

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// RedshiftService is the principal allowed to assume the cluster role.
const RedshiftService = "redshift.amazonaws.com"

// PolicyDocument is an IAM policy in its JSON wire form.
type PolicyDocument struct {
	Statement []PolicyStatement `json:"Statement"`
	Version   string            `json:"Version"`
}

// PolicyStatement is one statement of a PolicyDocument.
type PolicyStatement struct {
	Action    string          `json:"Action"`
	Effect    string          `json:"Effect"`
	Principal PolicyPrincipal `json:"Principal"`
}

// PolicyPrincipal names the service a trust policy admits.
type PolicyPrincipal struct {
	Service string `json:"Service"`
}

// TrustPolicy returns the assume-role policy letting service assume a role.
func TrustPolicy(service string) (string, error) {
	doc := PolicyDocument{
		Statement: []PolicyStatement{{
			Action:    "sts:AssumeRole",
			Effect:    "Allow",
			Principal: PolicyPrincipal{Service: service},
		}},
		Version: "2012-10-17",
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode trust policy: %w", err)
	}
	return string(b), nil
}
