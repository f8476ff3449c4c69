package api

const createUserSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "email", "password"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "email": {"type": "string", "minLength": 3, "maxLength": 255},
    "password": {"type": "string", "minLength": 8, "maxLength": 255}
  }
}`

const updateUserSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "email": {"type": "string", "minLength": 3, "maxLength": 255},
    "password": {"type": "string", "minLength": 8, "maxLength": 255}
  }
}`

const createAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["account_number"],
  "properties": {
    "account_number": {"type": "string", "minLength": 1, "maxLength": 50},
    "initial_balance": {"type": "number", "minimum": 0},
    "owner_id": {"type": "string", "maxLength": 255}
  }
}`

const updateAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["owner_id"],
  "properties": {
    "owner_id": {"type": "string", "minLength": 1, "maxLength": 255}
  }
}`

const createTransactionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["amount", "kind"],
  "properties": {
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "kind": {"type": "string", "enum": ["DEPOSIT", "WITHDRAWAL"]}
  }
}`

const transferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["from_account_id", "to_account_id", "amount"],
  "properties": {
    "from_account_id": {"type": "string", "minLength": 1},
    "to_account_id": {"type": "string", "minLength": 1},
    "amount": {"type": "number", "exclusiveMinimum": 0}
  }
}`
