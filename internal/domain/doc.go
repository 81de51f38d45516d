// Package domain contains the core business entities and validation rules:
// reports with their forward-only status lifecycle, and users. It is
// independent of any storage or delivery mechanism.
package domain
