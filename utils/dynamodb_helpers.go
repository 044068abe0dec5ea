package utils

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cardvault_server/models"
)

// ExtractString safely extracts a string from a DynamoDB attribute map
func ExtractString(item map[string]types.AttributeValue, field string) string {
	if attr, ok := item[field]; ok {
		if v, ok := attr.(*types.AttributeValueMemberS); ok {
			return v.Value
		}
	}
	return ""
}

// ExtractInt safely extracts a numeric attribute, returning 0 when absent or malformed
func ExtractInt(item map[string]types.AttributeValue, field string) int {
	if attr, ok := item[field]; ok {
		if v, ok := attr.(*types.AttributeValueMemberN); ok {
			n, err := strconv.Atoi(v.Value)
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// KeyAttributes converts a table key into its DynamoDB representation
func KeyAttributes(key models.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		models.AttrPK: &types.AttributeValueMemberS{Value: key.PK},
		models.AttrSK: &types.AttributeValueMemberS{Value: key.SK},
	}
}

// KeyFromItem reads the PK/SK pair back out of a marshaled item
func KeyFromItem(item map[string]types.AttributeValue) models.Key {
	return models.Key{PK: ExtractString(item, models.AttrPK), SK: ExtractString(item, models.AttrSK)}
}
