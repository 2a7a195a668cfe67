package serializers

import (
	"context"
	"fmt"
	"math/big"
	"reflect"

	"gorm.io/gorm/schema"
)

var (
	big10              = big.NewInt(10)
	u256BigIntOverflow = new(big.Int).Exp(big.NewInt(2), big.NewInt(256), nil)
)

type U256Serializer struct{}

func init() {
	schema.RegisterSerializer("u256", U256Serializer{})
}

func (U256Serializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue interface{}) error {
	if dbValue == nil {
		return nil
	} else if field.FieldType != reflect.TypeOf((*big.Int)(nil)) {
		return fmt.Errorf("can only deserialize into a *big.Int: %T", field.FieldType)
	}

	var str string
	switch v := dbValue.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case int64:
		str = fmt.Sprintf("%d", v)
	default:
		return fmt.Errorf("cannot deserialize u256 from %T", dbValue)
	}

	bigInt, ok := new(big.Int).SetString(str, 10)
	if !ok {
		return fmt.Errorf("invalid u256 representation: %s", str)
	}

	field.ReflectValueOf(ctx, dst).Set(reflect.ValueOf(bigInt))
	return nil
}

func (U256Serializer) Value(ctx context.Context, field *schema.Field, dst reflect.Value, fieldValue interface{}) (interface{}, error) {
	if fieldValue == nil || (field.FieldType.Kind() == reflect.Pointer && reflect.ValueOf(fieldValue).IsNil()) {
		return nil, nil
	} else if field.FieldType != reflect.TypeOf((*big.Int)(nil)) {
		return nil, fmt.Errorf("can only serialize a *big.Int: %T", field.FieldType)
	}

	bigInt := fieldValue.(*big.Int)
	if bigInt.Sign() == -1 {
		return nil, fmt.Errorf("cannot serialize a negative u256: %s", bigInt)
	} else if bigInt.Cmp(u256BigIntOverflow) >= 0 {
		return nil, fmt.Errorf("bigInt exceeds u256 bounds: %s", bigInt)
	}

	return bigInt.String(), nil
}
