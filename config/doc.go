// Package config 提供 Skillflow 的配置管理功能。
//
// 包含配置加载、默认值、校验与文件变更监听。
// 支持从 YAML 文件和环境变量加载配置，
// 监听器用于凭据轮换时触发重载回调。
package config
