package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ObjectFields 提供对象 ID 与命中状态字段，供读取/回源日志复用。
func ObjectFields(objectID string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"object_id": objectID,
		"cache_hit": cacheHit,
	}
}
