package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store instance, obj should be a pointer, Type:$id
func StoreRedis[T any](obj any, id string) error {
	key := GetTypeName[T]() + ":" + id
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id string) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + id
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id string) error {
	key := GetTypeName[T]() + ":" + id
	return config.RemoveRedisKey(key)
}

// store a per-org list, TypeList:$org_id
func StoreRedisList[T any](obj any, orgId string) error {
	key := GetTypeName[T]() + "List:" + orgId
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

// retrieve a per-org list
func RetrieveRedisList[T any](orgId string) ([]*T, error) {
	key := GetTypeName[T]() + "List:" + orgId
	var result []*T
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// clear list, TypeList:$org_id
func RemoveRedisList[T any](orgId string) error {
	var key string = GetTypeName[T]() + "List:" + orgId
	return config.RemoveRedisKey(key)
}

// ComplianceSummaryCacheKey is shared by the summary query (writer) and the
// ingest pipeline (invalidator).
func ComplianceSummaryCacheKey(orgId string) string {
	return fmt.Sprintf("ComplianceSummary:%s", orgId)
}
