// Package git keeps a local checkout of a policy repository.
//
// The checkout's policy directory is added to the policy manager's search
// paths, so named policies and extends references resolve against it like
// any other directory. HeadCommit reports the commit that audits ran
// against; the CLI records it as the policy version in audit history.
//
//	repo, err := git.NewRepository(&cfg.Policy.Git, logger)
//	if err != nil {
//		return err
//	}
//	if err := repo.Sync(ctx); err != nil {
//		return err
//	}
//	mgr.AddSearchPath(repo.PolicyPath())
//
// A Poller pulls on an interval for long-running commands and calls back
// when a policy file under the policy path changes. If the callback rejects
// the new commit the checkout is rolled back to the last accepted one.
//
// Authentication is none (public or local repositories), token (HTTPS
// basic auth) or ssh (private key file).
package git
