package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/lexgo/blobstore"
)

// The manifest layer publishes a generation by repointing this blob;
// the commit store intercepts exactly that name.
const currentPointer = "CURRENT"

// ErrCommitConflict is returned when another writer repointed the
// manifest between read and swap. The loser must reload and retry.
var ErrCommitConflict = errors.New("manifest pointer changed concurrently")

// DynamoDBAPI is the subset of the DynamoDB client the commit store
// needs.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// CommitStore layers DynamoDB-coordinated manifest commits over an S3
// blob store. S3 object puts are atomic but last-writer-wins, so two
// writers racing on the CURRENT pointer could silently drop a
// generation. The commit store keeps the pointer in a DynamoDB item
// instead and swaps it with a conditional write: one racing writer
// wins, the other gets ErrCommitConflict. Every other blob goes
// straight to S3.
//
// One item per index, keyed by the store's bucket/root path:
//
//	index_path (S, partition key) | commit_seq (N) | manifest (S)
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name lexgo-commits \
//	  --attribute-definitions AttributeName=index_path,AttributeType=S \
//	  --key-schema AttributeName=index_path,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	*Store
	db    DynamoDBAPI
	table string
	path  string
}

var _ blobstore.BlobStore = (*CommitStore)(nil)

// NewCommitStore wraps an S3 store with a DynamoDB-backed manifest
// pointer held in table.
func NewCommitStore(store *Store, db DynamoDBAPI, table string) *CommitStore {
	return &CommitStore{
		Store: store,
		db:    db,
		table: table,
		path:  store.bucket + "/" + store.root,
	}
}

// Open reads the manifest pointer from DynamoDB; everything else comes
// from S3.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != currentPointer {
		return s.Store.Open(ctx, name)
	}
	manifest, _, err := s.loadPointer(ctx)
	if err != nil {
		return nil, err
	}
	if manifest == "" {
		return nil, blobstore.ErrNotFound
	}
	return pointerBlob(manifest), nil
}

// Put swaps the manifest pointer conditionally; everything else goes to
// S3.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != currentPointer {
		return s.Store.Put(ctx, name, data)
	}
	return s.swapPointer(ctx, string(data))
}

// Delete removes the manifest pointer item or an S3 blob.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	if name != currentPointer {
		return s.Store.Delete(ctx, name)
	}
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.itemKey(),
	})
	return err
}

func (s *CommitStore) itemKey() map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"index_path": &ddbtypes.AttributeValueMemberS{Value: s.path},
	}
}

// loadPointer returns the current manifest blob name and commit
// sequence; an absent item reads as ("", 0).
func (s *CommitStore) loadPointer(ctx context.Context) (string, uint64, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", 0, fmt.Errorf("read manifest pointer: %w", err)
	}
	if out.Item == nil {
		return "", 0, nil
	}

	manifest, ok := out.Item["manifest"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return "", 0, errors.New("manifest pointer item lacks manifest attribute")
	}
	seqAttr, ok := out.Item["commit_seq"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return "", 0, errors.New("manifest pointer item lacks commit_seq attribute")
	}
	seq, err := strconv.ParseUint(seqAttr.Value, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("manifest pointer commit_seq does not parse: %w", err)
	}
	return manifest.Value, seq, nil
}

// swapPointer installs next as the manifest pointer, conditioned on the
// commit sequence observed by the read. A writer that lost the race
// fails the condition and gets ErrCommitConflict.
func (s *CommitStore) swapPointer(ctx context.Context, next string) error {
	_, seq, err := s.loadPointer(ctx)
	if err != nil {
		return err
	}

	item := s.itemKey()
	item["commit_seq"] = &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(seq+1, 10)}
	item["manifest"] = &ddbtypes.AttributeValueMemberS{Value: next}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}
	if seq == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(index_path)")
	} else {
		input.ConditionExpression = aws.String("#s = :s")
		input.ExpressionAttributeNames = map[string]string{"#s": "commit_seq"}
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{
			":s": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(seq, 10)},
		}
	}

	if _, err := s.db.PutItem(ctx, input); err != nil {
		var cond *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrCommitConflict
		}
		return fmt.Errorf("swap manifest pointer: %w", err)
	}
	return nil
}

// pointerBlob serves the pointer contents as a read-only blob.
type pointerBlob string

func (b pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b pointerBlob) Size() int64 { return int64(len(b)) }

func (b pointerBlob) Close() error { return nil }
