package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/ca-risken/common/pkg/logging"

	"github.com/ca-risken/secretops/pkg/common"
	"github.com/ca-risken/secretops/pkg/pattern"
)

const defaultCallTimeout = 5 * time.Second

// IAMAPI is the subset of the IAM client used to find and disable access keys.
type IAMAPI interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error)
}

// Owner is the identity an access key belongs to.
type Owner struct {
	UserName string `json:"user_name"`
	// KeyStatus is the key status observed during lookup.
	KeyStatus string `json:"key_status,omitempty"`
}

type Client struct {
	iam         IAMAPI
	callTimeout time.Duration
	logger      logging.Logger
}

func NewClient(api IAMAPI, callTimeout time.Duration, l logging.Logger) *Client {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Client{iam: api, callTimeout: callTimeout, logger: l}
}

// LookupOwner walks every user and their access keys until the credential is found.
// A nil owner with a nil error means the directory was listed completely without a match,
// which is always the case for an empty directory.
// Failures listing a single user's keys are logged and that user is skipped.
func (c *Client) LookupOwner(ctx context.Context, cred pattern.CredentialMatch) (*Owner, error) {
	if cred.Value == "" {
		return nil, errors.New("empty credential")
	}
	users := iam.NewListUsersPaginator(c.iam, &iam.ListUsersInput{})
	for users.HasMorePages() {
		var page *iam.ListUsersOutput
		err := c.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			page, err = users.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		for _, u := range page.Users {
			userName := aws.ToString(u.UserName)
			status, found, err := c.findKey(ctx, userName, cred.Value)
			if err != nil {
				c.logger.Warnf(ctx, "Failed to list access keys, skipped: user=%s, err=%+v", userName, err)
				continue
			}
			if found {
				return &Owner{UserName: userName, KeyStatus: status}, nil
			}
		}
	}
	return nil, nil
}

func (c *Client) findKey(ctx context.Context, userName, keyID string) (string, bool, error) {
	keys := iam.NewListAccessKeysPaginator(c.iam, &iam.ListAccessKeysInput{UserName: aws.String(userName)})
	for keys.HasMorePages() {
		var page *iam.ListAccessKeysOutput
		err := c.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			page, err = keys.NextPage(ctx)
			return err
		})
		if err != nil {
			return "", false, err
		}
		for _, k := range page.AccessKeyMetadata {
			if aws.ToString(k.AccessKeyId) == keyID {
				return string(k.Status), true, nil
			}
		}
	}
	return "", false, nil
}

// Deactivate sets the access key status to Inactive. The key is never deleted or rotated.
func (c *Client) Deactivate(ctx context.Context, owner *Owner, cred pattern.CredentialMatch) error {
	if owner == nil || owner.UserName == "" {
		return errors.New("owner is required")
	}
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		_, err := c.iam.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
			AccessKeyId: aws.String(cred.Value),
			UserName:    aws.String(owner.UserName),
			Status:      types.StatusTypeInactive,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update access key: user=%s, key=%s, err=%w", owner.UserName, common.MaskSecret(cred.Value), err)
	}
	c.logger.Infof(ctx, "Deactivated access key: user=%s, key=%s", owner.UserName, common.MaskSecret(cred.Value))
	return nil
}

func (c *Client) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return fn(ctx)
}
