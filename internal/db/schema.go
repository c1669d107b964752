package db

// Times are unix seconds; 0 means "not set" for the optional activity dates.

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  firstname TEXT NOT NULL DEFAULT '',
  lastname TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  idnumber TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fullname TEXT NOT NULL,
  shortname TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS enrolments (
  course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  role TEXT NOT NULL DEFAULT 'student',
  status TEXT NOT NULL DEFAULT 'active',
  PRIMARY KEY (course_id, user_id)
);

CREATE TABLE IF NOT EXISTS course_groups (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
  group_id INTEGER NOT NULL REFERENCES course_groups(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS checkmarks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  intro TEXT NOT NULL DEFAULT '',
  alwaysshowdescription INTEGER NOT NULL DEFAULT 1,
  resubmit INTEGER NOT NULL DEFAULT 0,
  timeavailable INTEGER NOT NULL DEFAULT 0,
  timedue INTEGER NOT NULL DEFAULT 0,
  cutoffdate INTEGER NOT NULL DEFAULT 0,
  gradingdue INTEGER NOT NULL DEFAULT 0,
  emailteachers INTEGER NOT NULL DEFAULT 0,
  grade INTEGER NOT NULL DEFAULT 100,
  flexiblenaming INTEGER NOT NULL DEFAULT 0,
  exampleprefix TEXT NOT NULL DEFAULT '',
  examplestart INTEGER NOT NULL DEFAULT 1,
  examplecount INTEGER NOT NULL DEFAULT 10,
  trackattendance INTEGER NOT NULL DEFAULT 0,
  attendancegradelink INTEGER NOT NULL DEFAULT 0,
  attendancegradebook INTEGER NOT NULL DEFAULT 0,
  presentationgrading INTEGER NOT NULL DEFAULT 0,
  presentationgrade INTEGER NOT NULL DEFAULT 0,
  presentationgradebook INTEGER NOT NULL DEFAULT 0,
  timecreated INTEGER NOT NULL,
  timemodified INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkmarks_course ON checkmarks(course_id);

CREATE TABLE IF NOT EXISTS checkmark_examples (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  checkmark_id INTEGER NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  grade INTEGER NOT NULL DEFAULT 0,
  sortorder INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_examples_checkmark ON checkmark_examples(checkmark_id, sortorder);

CREATE TABLE IF NOT EXISTS checkmark_submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  checkmark_id INTEGER NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  timecreated INTEGER NOT NULL,
  timemodified INTEGER NOT NULL,
  UNIQUE (checkmark_id, user_id)
);

CREATE TABLE IF NOT EXISTS checkmark_checks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  submission_id INTEGER NOT NULL REFERENCES checkmark_submissions(id) ON DELETE CASCADE,
  example_id INTEGER NOT NULL REFERENCES checkmark_examples(id) ON DELETE CASCADE,
  state INTEGER NOT NULL DEFAULT 0,
  UNIQUE (submission_id, example_id)
);

CREATE TABLE IF NOT EXISTS checkmark_feedbacks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  checkmark_id INTEGER NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  grade REAL,
  feedback TEXT NOT NULL DEFAULT '',
  attendance INTEGER,
  presentationgrade REAL,
  presentationfeedback TEXT NOT NULL DEFAULT '',
  grader_id INTEGER NOT NULL DEFAULT 0,
  mailed INTEGER NOT NULL DEFAULT 0,
  timecreated INTEGER NOT NULL,
  timemodified INTEGER NOT NULL,
  UNIQUE (checkmark_id, user_id)
);

CREATE TABLE IF NOT EXISTS checkmark_overrides (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  checkmark_id INTEGER NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  user_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
  group_id INTEGER REFERENCES course_groups(id) ON DELETE CASCADE,
  timeavailable INTEGER,
  timedue INTEGER,
  cutoffdate INTEGER,
  grouppriority INTEGER,
  modifier_id INTEGER NOT NULL DEFAULT 0,
  timecreated INTEGER NOT NULL,
  UNIQUE (checkmark_id, user_id),
  UNIQUE (checkmark_id, group_id)
);

CREATE TABLE IF NOT EXISTS grade_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  checkmark_id INTEGER NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  itemnumber INTEGER NOT NULL,
  name TEXT NOT NULL,
  grademax REAL NOT NULL,
  UNIQUE (checkmark_id, itemnumber)
);

CREATE TABLE IF NOT EXISTS grade_grades (
  item_id INTEGER NOT NULL REFERENCES grade_items(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL,
  grade REAL,
  feedback TEXT NOT NULL DEFAULT '',
  timemodified INTEGER NOT NULL,
  PRIMARY KEY (item_id, user_id)
);

CREATE TABLE IF NOT EXISTS calendar_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  checkmark_id INTEGER NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  course_id INTEGER NOT NULL,
  user_id INTEGER,
  group_id INTEGER,
  eventtype TEXT NOT NULL,
  name TEXT NOT NULL,
  timestart INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calendar_checkmark ON calendar_events(checkmark_id, eventtype);

CREATE TABLE IF NOT EXISTS user_preferences (
  user_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (user_id, name)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_platforms (
  issuer TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  token_url TEXT NOT NULL,
  jwks_url TEXT NOT NULL DEFAULT '',
  auth_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lti_links (
  checkmark_id INTEGER NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  platform_issuer TEXT NOT NULL,
  deployment_id TEXT NOT NULL,
  context_id TEXT NOT NULL,
  resource_link_id TEXT NOT NULL,
  lineitems_url TEXT NOT NULL DEFAULT '',
  scopes TEXT NOT NULL DEFAULT '[]',
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (checkmark_id, platform_issuer, deployment_id, context_id, resource_link_id)
);

CREATE TABLE IF NOT EXISTS lti_user_map (
  platform_issuer TEXT NOT NULL,
  local_user_id TEXT NOT NULL,
  platform_sub TEXT NOT NULL,
  PRIMARY KEY (platform_issuer, local_user_id)
);

CREATE TABLE IF NOT EXISTS gradebook_lineitems (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  activity_id TEXT NOT NULL,
  platform_issuer TEXT NOT NULL,
  deployment_id TEXT NOT NULL,
  context_id TEXT NOT NULL,
  resource_link_id TEXT NOT NULL,
  label TEXT NOT NULL,
  score_max REAL NOT NULL,
  line_item_url TEXT NOT NULL,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (activity_id, platform_issuer, deployment_id, context_id, resource_link_id)
);

CREATE TABLE IF NOT EXISTS grade_sync_status (
  record_key TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  retries INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  firstname TEXT NOT NULL DEFAULT '',
  lastname TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  idnumber TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
  id BIGSERIAL PRIMARY KEY,
  fullname TEXT NOT NULL,
  shortname TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrolments (
  course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  role TEXT NOT NULL DEFAULT 'student',
  status TEXT NOT NULL DEFAULT 'active',
  PRIMARY KEY (course_id, user_id)
);

CREATE TABLE IF NOT EXISTS course_groups (
  id BIGSERIAL PRIMARY KEY,
  course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
  group_id BIGINT NOT NULL REFERENCES course_groups(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS checkmarks (
  id BIGSERIAL PRIMARY KEY,
  course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  intro TEXT NOT NULL DEFAULT '',
  alwaysshowdescription BOOLEAN NOT NULL DEFAULT TRUE,
  resubmit BOOLEAN NOT NULL DEFAULT FALSE,
  timeavailable BIGINT NOT NULL DEFAULT 0,
  timedue BIGINT NOT NULL DEFAULT 0,
  cutoffdate BIGINT NOT NULL DEFAULT 0,
  gradingdue BIGINT NOT NULL DEFAULT 0,
  emailteachers BOOLEAN NOT NULL DEFAULT FALSE,
  grade INTEGER NOT NULL DEFAULT 100,
  flexiblenaming BOOLEAN NOT NULL DEFAULT FALSE,
  exampleprefix TEXT NOT NULL DEFAULT '',
  examplestart INTEGER NOT NULL DEFAULT 1,
  examplecount INTEGER NOT NULL DEFAULT 10,
  trackattendance BOOLEAN NOT NULL DEFAULT FALSE,
  attendancegradelink BOOLEAN NOT NULL DEFAULT FALSE,
  attendancegradebook BOOLEAN NOT NULL DEFAULT FALSE,
  presentationgrading BOOLEAN NOT NULL DEFAULT FALSE,
  presentationgrade INTEGER NOT NULL DEFAULT 0,
  presentationgradebook BOOLEAN NOT NULL DEFAULT FALSE,
  timecreated BIGINT NOT NULL,
  timemodified BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkmarks_course ON checkmarks(course_id);

CREATE TABLE IF NOT EXISTS checkmark_examples (
  id BIGSERIAL PRIMARY KEY,
  checkmark_id BIGINT NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  grade INTEGER NOT NULL DEFAULT 0,
  sortorder INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_examples_checkmark ON checkmark_examples(checkmark_id, sortorder);

CREATE TABLE IF NOT EXISTS checkmark_submissions (
  id BIGSERIAL PRIMARY KEY,
  checkmark_id BIGINT NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  timecreated BIGINT NOT NULL,
  timemodified BIGINT NOT NULL,
  UNIQUE (checkmark_id, user_id)
);

CREATE TABLE IF NOT EXISTS checkmark_checks (
  id BIGSERIAL PRIMARY KEY,
  submission_id BIGINT NOT NULL REFERENCES checkmark_submissions(id) ON DELETE CASCADE,
  example_id BIGINT NOT NULL REFERENCES checkmark_examples(id) ON DELETE CASCADE,
  state SMALLINT NOT NULL DEFAULT 0,
  UNIQUE (submission_id, example_id)
);

CREATE TABLE IF NOT EXISTS checkmark_feedbacks (
  id BIGSERIAL PRIMARY KEY,
  checkmark_id BIGINT NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  grade DOUBLE PRECISION,
  feedback TEXT NOT NULL DEFAULT '',
  attendance SMALLINT,
  presentationgrade DOUBLE PRECISION,
  presentationfeedback TEXT NOT NULL DEFAULT '',
  grader_id BIGINT NOT NULL DEFAULT 0,
  mailed BOOLEAN NOT NULL DEFAULT FALSE,
  timecreated BIGINT NOT NULL,
  timemodified BIGINT NOT NULL,
  UNIQUE (checkmark_id, user_id)
);

CREATE TABLE IF NOT EXISTS checkmark_overrides (
  id BIGSERIAL PRIMARY KEY,
  checkmark_id BIGINT NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
  group_id BIGINT REFERENCES course_groups(id) ON DELETE CASCADE,
  timeavailable BIGINT,
  timedue BIGINT,
  cutoffdate BIGINT,
  grouppriority INTEGER,
  modifier_id BIGINT NOT NULL DEFAULT 0,
  timecreated BIGINT NOT NULL,
  UNIQUE (checkmark_id, user_id),
  UNIQUE (checkmark_id, group_id)
);

CREATE TABLE IF NOT EXISTS grade_items (
  id BIGSERIAL PRIMARY KEY,
  checkmark_id BIGINT NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  itemnumber INTEGER NOT NULL,
  name TEXT NOT NULL,
  grademax DOUBLE PRECISION NOT NULL,
  UNIQUE (checkmark_id, itemnumber)
);

CREATE TABLE IF NOT EXISTS grade_grades (
  item_id BIGINT NOT NULL REFERENCES grade_items(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  grade DOUBLE PRECISION,
  feedback TEXT NOT NULL DEFAULT '',
  timemodified BIGINT NOT NULL,
  PRIMARY KEY (item_id, user_id)
);

CREATE TABLE IF NOT EXISTS calendar_events (
  id BIGSERIAL PRIMARY KEY,
  checkmark_id BIGINT NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  course_id BIGINT NOT NULL,
  user_id BIGINT,
  group_id BIGINT,
  eventtype TEXT NOT NULL,
  name TEXT NOT NULL,
  timestart BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calendar_checkmark ON calendar_events(checkmark_id, eventtype);

CREATE TABLE IF NOT EXISTS user_preferences (
  user_id BIGINT NOT NULL,
  name TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (user_id, name)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_platforms (
  issuer TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  token_url TEXT NOT NULL,
  jwks_url TEXT NOT NULL DEFAULT '',
  auth_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lti_links (
  checkmark_id BIGINT NOT NULL REFERENCES checkmarks(id) ON DELETE CASCADE,
  platform_issuer TEXT NOT NULL,
  deployment_id TEXT NOT NULL,
  context_id TEXT NOT NULL,
  resource_link_id TEXT NOT NULL,
  lineitems_url TEXT NOT NULL DEFAULT '',
  scopes TEXT NOT NULL DEFAULT '[]',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (checkmark_id, platform_issuer, deployment_id, context_id, resource_link_id)
);

CREATE TABLE IF NOT EXISTS lti_user_map (
  platform_issuer TEXT NOT NULL,
  local_user_id TEXT NOT NULL,
  platform_sub TEXT NOT NULL,
  PRIMARY KEY (platform_issuer, local_user_id)
);

CREATE TABLE IF NOT EXISTS gradebook_lineitems (
  id BIGSERIAL PRIMARY KEY,
  activity_id TEXT NOT NULL,
  platform_issuer TEXT NOT NULL,
  deployment_id TEXT NOT NULL,
  context_id TEXT NOT NULL,
  resource_link_id TEXT NOT NULL,
  label TEXT NOT NULL,
  score_max DOUBLE PRECISION NOT NULL,
  line_item_url TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (activity_id, platform_issuer, deployment_id, context_id, resource_link_id)
);

CREATE TABLE IF NOT EXISTS grade_sync_status (
  record_key TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  retries INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
