// Package git provides the git porcelain used to assemble a mirror commit.
//
// Every operation is a sequence of git subprocesses issued through a
// CommandRunner, one at a time, in the runner's working directory. The
// Client turns their captured output into typed answers: the current branch,
// whether a remote branch exists, whether a commit was a no-op, and the
// added/modified/deleted counts of the last commit.
//
// Example Usage:
//
//	client := git.NewClient(runner.New(logger), logger)
//	if err := client.Clone(ctx, "git@github.com:acme/site.git", workspace); err != nil {
//	    return err
//	}
//	committed, err := client.CommitAll(ctx, git.CommitMessage)
//
// Error Handling:
//
// A failing subprocess yields an OperationError with the process or push
// operation and the command's output as the cause. Commit attempts that fail
// only because there is nothing to commit are not errors.
//
// Thread Safety:
//
// A Client shares its runner's working directory and is not safe for
// concurrent use.
package git
