package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-token-nosql/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.queryGSI(ctx, indexPhone, fieldPhoneNumber, phone)
}

// Update applies patch to an existing user. Missing users yield domain.ErrNotFound.
func (r *UserRepo) Update(ctx context.Context, userID string, patch domain.UserPatch) error {
	ue, err := buildUpdateExpr(patchUpdates(patch, time.Now()))
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return err
}

// Search scans the table for users other than excludeID whose name or email
// contains keyword. DynamoDB's contains() is case-sensitive, so the keyword
// is matched after unmarshalling.
func (r *UserRepo) Search(ctx context.Context, keyword, excludeID string) ([]domain.User, error) {
	p := dynamodb.NewScanPaginator(r.client, searchScan(r.tableName, excludeID))
	var out []domain.User
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		var users []domain.User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &users); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		for _, u := range users {
			if u.Matches(keyword) {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func searchScan(table, excludeID string) *dynamodb.ScanInput {
	return &dynamodb.ScanInput{
		TableName:                 aws.String(table),
		FilterExpression:          aws.String("#id <> :caller"),
		ExpressionAttributeNames:  map[string]string{"#id": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":caller": &types.AttributeValueMemberS{Value: excludeID}},
	}
}

// patchUpdates flattens the non-nil fields of p into attribute updates.
func patchUpdates(p domain.UserPatch, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		fieldUpdatedAt: now.UTC(),
	}
	if p.Name != nil {
		updates[fieldName] = *p.Name
	}
	if p.Email != nil {
		updates[fieldEmail] = *p.Email
	}
	if p.PhoneNumber != nil {
		updates[fieldPhoneNumber] = *p.PhoneNumber
	}
	if p.PasswordHash != nil {
		updates[fieldPasswordHash] = *p.PasswordHash
	}
	if p.Avatar != nil {
		updates[fieldAvatar] = *p.Avatar
	}
	if p.IsVerifiedEmail != nil {
		updates[fieldIsVerifiedEmail] = *p.IsVerifiedEmail
	}
	if p.IsVerifiedPhoneNumber != nil {
		updates[fieldIsVerifiedPhoneNumber] = *p.IsVerifiedPhoneNumber
	}
	return updates
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}
