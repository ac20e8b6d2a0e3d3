package config

// configSchema is the JSON schema every rotor.yaml must satisfy. The parsed
// document is marshaled to JSON and validated against it, so duration fields
// appear here as strings.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "backend", "secrets"],
  "properties": {
    "version": {"type": "integer", "enum": [1]},
    "backend": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"type": "string", "enum": ["vault", "aws", "memory"]},
        "vault": {
          "type": "object",
          "properties": {
            "address": {"type": "string"},
            "mount": {"type": "string"},
            "token_keyring_service": {"type": "string"}
          }
        },
        "aws": {
          "type": "object",
          "properties": {
            "region": {"type": "string"},
            "prefix": {"type": "string"}
          }
        }
      }
    },
    "ledger": {
      "type": "object",
      "properties": {
        "dir": {"type": "string"},
        "backend": {"type": "string", "enum": ["file", "vault"]}
      }
    },
    "secrets": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["path"],
        "properties": {
          "path": {"type": "string"},
          "health_url": {"type": "string"},
          "driver": {"type": "string", "enum": ["postgres", "mysql"]},
          "dsn": {"type": "string"},
          "user": {"type": "string"},
          "addr": {"type": "string"},
          "max_attempts": {"type": "integer", "minimum": 1},
          "backoff": {"type": "string"}
        }
      }
    },
    "reload": {
      "type": "object",
      "properties": {
        "command": {"type": "array", "items": {"type": "string"}, "minItems": 1}
      }
    },
    "rotate_all": {
      "type": "object",
      "properties": {"cooldown": {"type": "string"}}
    },
    "preflight": {
      "type": "object",
      "properties": {
        "disk_path": {"type": "string"},
        "disk_limit_pct": {"type": "number", "minimum": 1, "maximum": 100},
        "memory_warn_pct": {"type": "number", "minimum": 1, "maximum": 100},
        "liveness": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "url"],
            "properties": {
              "name": {"type": "string"},
              "url": {"type": "string"}
            }
          }
        }
      }
    },
    "notifications": {
      "type": "object",
      "properties": {
        "slack": {
          "type": "object",
          "required": ["webhook_url"],
          "properties": {
            "webhook_url": {"type": "string"},
            "events": {"type": "array", "items": {"type": "string"}}
          }
        },
        "webhooks": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "url"],
            "properties": {
              "name": {"type": "string"},
              "url": {"type": "string"},
              "method": {"type": "string", "enum": ["POST", "PUT"]},
              "headers": {"type": "object", "additionalProperties": {"type": "string"}}
            }
          }
        },
        "email": {
          "type": "object",
          "required": ["smtp", "from", "to"],
          "properties": {
            "smtp": {
              "type": "object",
              "required": ["host", "port"],
              "properties": {
                "host": {"type": "string"},
                "port": {"type": "integer"},
                "username": {"type": "string"},
                "password": {"type": "string"},
                "tls": {"type": "boolean"}
              }
            },
            "from": {"type": "string"},
            "to": {"type": "array", "items": {"type": "string"}, "minItems": 1}
          }
        }
      }
    },
    "rollback_window": {"type": "string"}
  }
}`
