package redis

import "strings"

const defaultNamespace = "cbwis"

// Keyspace builds colon separated keys under one namespace. Blank parts are dropped.
type Keyspace struct {
	Namespace string
}

func (k Keyspace) Key(parts ...string) string {
	ns := k.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// Idempotency keys stored responses by caller scope and client supplied key.
func (k Keyspace) Idempotency(scope, id string) string {
	return k.Key("idempotency", scope, id)
}

func (k Keyspace) Cache(parts ...string) string {
	return k.Key(append([]string{"cache"}, parts...)...)
}

// Lock names the single-runner lock of worker in env.
func (k Keyspace) Lock(worker, env string) string {
	return k.Key(worker, "lock", env)
}
