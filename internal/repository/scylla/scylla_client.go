package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"repairshop-api/internal/config"
	"repairshop-api/internal/util"
)

// PreparedStatements holds the statements the repositories bind per call.
type PreparedStatements struct {
	InsertSession         *gocql.Query
	GetSessionByToken     *gocql.Query
	TouchSession          *gocql.Query
	DeleteSessionByToken  *gocql.Query
	GetTokenByID          *gocql.Query
	InsertPrincipalIndex  *gocql.Query
	GetTokensForPrincipal *gocql.Query
	DeletePrincipalIndex  *gocql.Query
	ScanSessions          *gocql.Query

	CreateEmployee    *gocql.Query
	GetEmployeeByID   *gocql.Query
	ListEmployees     *gocql.Query
	SetEmployeeActive *gocql.Query
	SetEmployeeDigest *gocql.Query

	GetAdminDigest *gocql.Query
	SetAdminDigest *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		util.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.InsertSession = s.Session.Query(`
        INSERT INTO sessions_by_token (
            token, session_id, kind, principal_id,
            created_at, expires_at, last_activity_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetSessionByToken = s.Session.Query(`
        SELECT token, session_id, kind, principal_id,
            created_at, expires_at, last_activity_at
        FROM sessions_by_token WHERE token = ?`)

	prepared.TouchSession = s.Session.Query(`
        UPDATE sessions_by_token
        SET expires_at = ?, last_activity_at = ?
        WHERE token = ? IF expires_at = ?`)

	prepared.DeleteSessionByToken = s.Session.Query(`
        DELETE FROM sessions_by_token WHERE token = ?`)

	prepared.GetTokenByID = s.Session.Query(`
        SELECT token FROM session_tokens_by_id WHERE session_id = ?`)

	prepared.InsertPrincipalIndex = s.Session.Query(`
        INSERT INTO session_tokens_by_id (session_id, token, principal_id)
        VALUES (?, ?, ?)`)

	prepared.GetTokensForPrincipal = s.Session.Query(`
        SELECT session_id, token FROM session_tokens_by_id
        WHERE principal_id = ? ALLOW FILTERING`)

	prepared.DeletePrincipalIndex = s.Session.Query(`
        DELETE FROM session_tokens_by_id WHERE session_id = ?`)

	prepared.ScanSessions = s.Session.Query(`
        SELECT token, session_id, expires_at FROM sessions_by_token`)

	prepared.CreateEmployee = s.Session.Query(`
        INSERT INTO employees (
            employee_id, name, active, pin_digest, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?) IF NOT EXISTS`)

	prepared.GetEmployeeByID = s.Session.Query(`
        SELECT employee_id, name, active, pin_digest, created_at, updated_at
        FROM employees WHERE employee_id = ?`)

	prepared.ListEmployees = s.Session.Query(`
        SELECT employee_id, name, active, pin_digest, created_at, updated_at
        FROM employees`)

	prepared.SetEmployeeActive = s.Session.Query(`
        UPDATE employees SET active = ?, updated_at = ?
        WHERE employee_id = ? IF EXISTS`)

	prepared.SetEmployeeDigest = s.Session.Query(`
        UPDATE employees SET pin_digest = ?, updated_at = ?
        WHERE employee_id = ? IF EXISTS`)

	prepared.GetAdminDigest = s.Session.Query(`
        SELECT pin_digest FROM admin_credentials WHERE name = ?`)

	prepared.SetAdminDigest = s.Session.Query(`
        INSERT INTO admin_credentials (name, pin_digest) VALUES (?, ?)`)

	s.Prepared = prepared
	s.isPrepared = true

	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
