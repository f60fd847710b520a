package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-token-nosql/internal/domain"
)

// claimLease bounds how long an unreleased claim blocks other redeemers.
const claimLease = 30 * time.Second

// TokenRepo stores single-use tokens.
// PK: owner_id, SK: purpose. GSI value-index (value, purpose) serves lookups by
// presented value. expires_at is the table TTL attribute; expiry is still
// checked on every read since TTL deletion lags.
type TokenRepo struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewTokenRepo(client *dynamodb.Client, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *TokenRepo) key(ownerID string, purpose domain.Purpose) map[string]types.AttributeValue {
	return compositeKey(fieldOwnerID, ownerID, fieldPurpose, string(purpose))
}

// Issue writes t, replacing any token held for the same owner and purpose.
func (r *TokenRepo) Issue(ctx context.Context, t *domain.Token) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	delete(item, fieldClaimedAt)
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TokenRepo) FindLive(ctx context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(ownerID, purpose),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	var t domain.Token
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	if !t.LiveAt(r.now()) {
		return nil, fmt.Errorf("token expired: %w", domain.ErrNotFound)
	}
	return &t, nil
}

// FindByValue queries the value index, then re-reads the base item so a token
// rotated since the index was last updated is not returned.
func (r *TokenRepo) FindByValue(ctx context.Context, purpose domain.Purpose, value string) (*domain.Token, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexValue),
		KeyConditionExpression: aws.String("#v = :v AND #p = :p"),
		ExpressionAttributeNames: map[string]string{
			"#v": fieldValue,
			"#p": fieldPurpose,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
			":p": &types.AttributeValueMemberS{Value: string(purpose)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	var hit domain.Token
	if err := attributevalue.UnmarshalMap(out.Items[0], &hit); err != nil {
		return nil, err
	}
	t, err := r.FindLive(ctx, hit.OwnerID, purpose)
	if err != nil {
		return nil, err
	}
	if t.Value != value {
		return nil, fmt.Errorf("token rotated: %w", domain.ErrNotFound)
	}
	return t, nil
}

// tokenWrite is the update and condition half of a conditional write on one
// token row.
type tokenWrite struct {
	Update    string
	Condition string
	Names     map[string]string
	Values    map[string]types.AttributeValue
}

func valueMatch(value string) tokenWrite {
	return tokenWrite{
		Condition: "#v = :val",
		Names:     map[string]string{"#v": fieldValue},
		Values:    map[string]types.AttributeValue{":val": &types.AttributeValueMemberS{Value: value}},
	}
}

// claimWrite stamps claimed_at with now. The stored row must carry value, be
// unexpired, and either be unclaimed or hold a claim older than the lease.
func claimWrite(value string, now time.Time) tokenWrite {
	w := valueMatch(value)
	w.Update = "SET #c = :now"
	w.Condition = "#v = :val AND #e > :now AND (attribute_not_exists(#c) OR #c <= :stale)"
	w.Names["#e"] = fieldExpiresAt
	w.Names["#c"] = fieldClaimedAt
	w.Values[":now"] = numberAV(now.Unix())
	w.Values[":stale"] = numberAV(now.Unix() - int64(claimLease/time.Second))
	return w
}

// releaseWrite drops the claim marker if the row still carries value.
func releaseWrite(value string) tokenWrite {
	w := valueMatch(value)
	w.Update = "REMOVE #c"
	w.Names["#c"] = fieldClaimedAt
	return w
}

// sealWrite sets claimed_at to the token's expiry. The claim condition then
// can never see it as stale while the row is live.
func sealWrite(t *domain.Token) tokenWrite {
	w := valueMatch(t.Value)
	w.Update = "SET #c = :exp"
	w.Names["#c"] = fieldClaimedAt
	w.Values[":exp"] = numberAV(t.ExpiresAt)
	return w
}

func (r *TokenRepo) update(ctx context.Context, t *domain.Token, w tokenWrite) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(t.OwnerID, t.Purpose),
		UpdateExpression:          aws.String(w.Update),
		ConditionExpression:       aws.String(w.Condition),
		ExpressionAttributeNames:  w.Names,
		ExpressionAttributeValues: w.Values,
	})
	return err
}

// Claim marks t as being redeemed. It fails with domain.ErrNotFound when the
// stored token no longer carries t's value, has expired, or is held by another
// redeemer whose lease has not run out.
func (r *TokenRepo) Claim(ctx context.Context, t *domain.Token) error {
	err := r.update(ctx, t, claimWrite(t.Value, r.now()))
	if isConditionFailed(err) {
		return fmt.Errorf("token unavailable: %w", domain.ErrNotFound)
	}
	return err
}

// Release drops the claim on t if t is still the stored token.
func (r *TokenRepo) Release(ctx context.Context, t *domain.Token) error {
	err := r.update(ctx, t, releaseWrite(t.Value))
	if isConditionFailed(err) {
		return nil
	}
	return err
}

// Seal keeps t claimed until it expires; the TTL sweep removes the row.
func (r *TokenRepo) Seal(ctx context.Context, t *domain.Token) error {
	err := r.update(ctx, t, sealWrite(t))
	if isConditionFailed(err) {
		return nil
	}
	return err
}

// Redeem deletes t. Deleting an already-removed or rotated token is a no-op.
func (r *TokenRepo) Redeem(ctx context.Context, t *domain.Token) error {
	w := valueMatch(t.Value)
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(t.OwnerID, t.Purpose),
		ConditionExpression:       aws.String(w.Condition),
		ExpressionAttributeNames:  w.Names,
		ExpressionAttributeValues: w.Values,
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}

func (r *TokenRepo) Revoke(ctx context.Context, ownerID string, purpose domain.Purpose) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.key(ownerID, purpose),
	})
	return err
}

func numberAV(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
