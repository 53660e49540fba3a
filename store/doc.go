// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
Package store 提供基于 gorm 的审议会话存储。

# 概述

council 包本身不做持久化。store 把 council.Result 序列化为 JSON 保存在
council_conversations 表中，并冗余 query、state、chairman、members、
final_answer 等字段以便列出历史记录时无需解码完整结果。

# 驱动

  - sqlite（默认）：github.com/glebarez/sqlite，纯 Go，无需 cgo
  - postgres：gorm.io/driver/postgres
  - mysql：gorm.io/driver/mysql

# 主要能力

  - Open / New：连接数据库、设置连接池并 AutoMigrate
  - Save / Get / List / Delete：会话的增删查，Save 按 ID 覆盖
  - QueryObserver：把每次操作耗时交给 internal/metrics
*/
package store
