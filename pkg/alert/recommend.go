package alert

import (
	"fmt"

	"github.com/ca-risken/secretops/pkg/pattern"
)

type Recommend struct {
	Category       string `json:"category,omitempty"`
	Risk           string `json:"risk,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

const cloudKeyRecommendation = `IMMEDIATE ACTIONS REQUIRED:
1. Verify if this is a legitimate key exposure
2. If owner found and key deactivated, verify application functionality
3. Generate replacement key if needed and update application configuration
4. Review commit history to ensure key is removed from all branches
5. Consider using git-filter-repo to remove key from repository history
6. Review CloudTrail logs for any unauthorized API usage with this key
7. Update GITHUB_WEBHOOK_SECRET if webhook security is compromised`

const genericRecommendation = `Take the following actions for leaked secrets
- Check the commits above for the secret that has been pushed.
- Check which environments the secret has access to and what permissions it has (check with the pusher if possible).
- Make sure you can rotate the secret that has leaked.(If it is possible, do it immediately)
- Reduce the permissions associated with the leaked secret or restrict its usage conditions
- Remove the secret from the repository history and move it to a secret manager.
- Next if the secret activity can be confirmed from audit logs, etc., conduct a damage assessment.`

func recommendFor(category string) Recommend {
	switch category {
	case pattern.CategoryCloudKey:
		return Recommend{
			Category: category,
			Risk: `Cloud credential has been pushed to the repository
- Anyone with read access to the repository can use the key within the scope of its authority
- For example, they can break into the cloud platform, destroy critical resources, access or edit sensitive data, and so on.`,
			Recommendation: cloudKeyRecommendation,
		}
	case pattern.CategoryPrivateKey:
		return Recommend{
			Category: category,
			Risk: `Private key has been pushed to the repository
- The key can be used to impersonate the servers or users that trust it
- Data encrypted for the key can be decrypted.`,
			Recommendation: genericRecommendation,
		}
	case "":
		return Recommend{Recommendation: genericRecommendation}
	default:
		return Recommend{
			Category: category,
			Risk: fmt.Sprintf(`Secret (%s) has been pushed to the repository
- If a secret is leaked, a cyber attack is possible within the scope of the secret's authority`, category),
			Recommendation: genericRecommendation,
		}
	}
}
